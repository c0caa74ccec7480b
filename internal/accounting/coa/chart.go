// Package coa holds the static chart of accounts used to validate postings.
package coa

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

func (t AccountType) valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts entry.
type Account struct {
	Code string      `yaml:"code" json:"code"`
	Name string      `yaml:"name" json:"name"`
	Type AccountType `yaml:"type" json:"type"`
}

// Chart is an immutable code → account lookup.
type Chart struct {
	accounts map[string]Account
}

//go:embed chart.yaml
var defaultChart []byte

type document struct {
	Accounts []Account `yaml:"accounts"`
}

// Default returns the embedded group chart of accounts.
func Default() *Chart {
	chart, err := Parse(defaultChart)
	if err != nil {
		panic(fmt.Sprintf("coa: embedded chart invalid: %v", err))
	}
	return chart
}

// Parse builds a chart from YAML.
func Parse(raw []byte) (*Chart, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("coa: parse: %w", err)
	}
	return New(doc.Accounts)
}

// New builds a chart from the supplied accounts.
func New(accounts []Account) (*Chart, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("coa: chart is empty")
	}
	byCode := make(map[string]Account, len(accounts))
	for _, acc := range accounts {
		acc.Code = strings.TrimSpace(acc.Code)
		acc.Type = AccountType(strings.ToUpper(string(acc.Type)))
		if acc.Code == "" {
			return nil, fmt.Errorf("coa: account %q missing code", acc.Name)
		}
		if !acc.Type.valid() {
			return nil, fmt.Errorf("coa: account %s has unknown type %q", acc.Code, acc.Type)
		}
		if _, dup := byCode[acc.Code]; dup {
			return nil, fmt.Errorf("coa: duplicate account code %s", acc.Code)
		}
		byCode[acc.Code] = acc
	}
	return &Chart{accounts: byCode}, nil
}

// Lookup returns the account for code.
func (c *Chart) Lookup(code string) (Account, bool) {
	if c == nil {
		return Account{}, false
	}
	acc, ok := c.accounts[strings.TrimSpace(code)]
	return acc, ok
}

// Exists reports whether code is a known account.
func (c *Chart) Exists(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

// All lists accounts ordered by code.
func (c *Chart) All() []Account {
	if c == nil {
		return nil
	}
	out := make([]Account, 0, len(c.accounts))
	for _, acc := range c.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
