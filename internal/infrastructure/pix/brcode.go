package pix

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EMV field IDs used by the BR Code (Pix "copia e cola") payload
const (
	fieldPayloadFormat       = "00"
	fieldPointOfInitiation   = "01"
	fieldMerchantAccount     = "26"
	fieldMerchantCategory    = "52"
	fieldTransactionCurrency = "53"
	fieldTransactionAmount   = "54"
	fieldCountryCode         = "58"
	fieldMerchantName        = "59"
	fieldMerchantCity        = "60"
	fieldAdditionalData      = "62"
	fieldCRC                 = "63"

	subfieldGUI         = "00"
	subfieldPixKey      = "01"
	subfieldDescription = "02"
	subfieldTxID        = "05"

	pixGUI        = "br.gov.bcb.pix"
	currencyBRL   = "986"
	maxNameLen    = 25
	maxCityLen    = 15
	maxTxIDLen    = 25
	maxFieldValue = 99
)

// BRCode describes a static or single-use Pix charge
type BRCode struct {
	PixKey       string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string // Reference shown to the payer's bank, alphanumeric
	Description  string
	SingleUse    bool
}

// Payload renders the EMV payload, CRC included
func (c BRCode) Payload() (string, error) {
	if c.PixKey == "" {
		return "", fmt.Errorf("brcode: pix key is required")
	}
	if c.Amount.IsNegative() {
		return "", fmt.Errorf("brcode: amount cannot be negative")
	}

	account := emvField(subfieldGUI, pixGUI) + emvField(subfieldPixKey, c.PixKey)
	if c.Description != "" {
		account += emvField(subfieldDescription, truncate(asciiUpper(c.Description), 40))
	}
	if len(account) > maxFieldValue {
		return "", fmt.Errorf("brcode: merchant account information exceeds %d characters", maxFieldValue)
	}

	txID := sanitizeTxID(c.TxID)
	if txID == "" {
		txID = "***"
	}

	var b strings.Builder
	b.WriteString(emvField(fieldPayloadFormat, "01"))
	if c.SingleUse {
		b.WriteString(emvField(fieldPointOfInitiation, "12"))
	}
	b.WriteString(emvField(fieldMerchantAccount, account))
	b.WriteString(emvField(fieldMerchantCategory, "0000"))
	b.WriteString(emvField(fieldTransactionCurrency, currencyBRL))
	if c.Amount.IsPositive() {
		b.WriteString(emvField(fieldTransactionAmount, c.Amount.StringFixed(2)))
	}
	b.WriteString(emvField(fieldCountryCode, "BR"))
	b.WriteString(emvField(fieldMerchantName, truncate(asciiUpper(c.MerchantName), maxNameLen)))
	b.WriteString(emvField(fieldMerchantCity, truncate(asciiUpper(c.MerchantCity), maxCityLen)))
	b.WriteString(emvField(fieldAdditionalData, emvField(subfieldTxID, txID)))

	// The CRC covers its own ID and length
	b.WriteString(fieldCRC + "04")
	payload := b.String()
	return payload + fmt.Sprintf("%04X", CRC16CCITT([]byte(payload))), nil
}

// VerifyPayload checks the trailing CRC of a BR Code payload
func VerifyPayload(payload string) bool {
	if len(payload) < 8 || payload[len(payload)-8:len(payload)-4] != fieldCRC+"04" {
		return false
	}
	body, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	return fmt.Sprintf("%04X", CRC16CCITT([]byte(body))) == strings.ToUpper(sum)
}

// CRC16CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF)
func CRC16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func emvField(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// asciiUpper strips diacritics and upper-cases; bank apps reject non-ASCII names
func asciiUpper(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, out)
	return strings.ToUpper(strings.TrimSpace(out))
}

func sanitizeTxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return truncate(b.String(), maxTxIDLen)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
