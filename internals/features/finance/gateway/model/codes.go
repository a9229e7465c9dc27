package model

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CodeTable selects which operation's response codes to describe.
type CodeTable string

const (
	TablePayment           CodeTable = "payment"
	TableQuery             CodeTable = "query"
	TableRefund            CodeTable = "refund"
	TableTransactionStatus CodeTable = "transaction_status"

	LocaleVN = "vn"
	LocaleEN = "en"

	codeUnknown = "99"
)

//go:embed codes.yaml
var rawCodes []byte

// Codes is the loaded table: operation -> code -> locale -> message.
type Codes map[CodeTable]map[string]map[string]string

var defaultCodes = mustLoadCodes(rawCodes)

func mustLoadCodes(b []byte) Codes {
	c, err := LoadCodes(b)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCodes parses a YAML code table. Every table must carry an unknown
// ("99") entry so Describe never returns an empty string.
func LoadCodes(b []byte) (Codes, error) {
	var c Codes
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("gateway codes: %w", err)
	}
	for table, entries := range c {
		if _, ok := entries[codeUnknown]; !ok {
			return nil, fmt.Errorf("gateway codes: table %q has no %q entry", table, codeUnknown)
		}
	}
	return c, nil
}

// Describe returns the message for code in locale. Unknown codes map to
// the table's generic entry; unknown locales fall back to vn.
func (c Codes) Describe(table CodeTable, code, locale string) string {
	entries, ok := c[table]
	if !ok {
		entries = c[TablePayment]
	}
	entry, ok := entries[strings.TrimSpace(code)]
	if !ok {
		entry = entries[codeUnknown]
	}
	if msg, ok := entry[strings.ToLower(locale)]; ok {
		return msg
	}
	return entry[LocaleVN]
}

// Describe uses the embedded table.
func Describe(table CodeTable, code, locale string) string {
	return defaultCodes.Describe(table, code, locale)
}
