// Package directory reads the company, project and bank account records owned by
// the operational modules. The posting core only consumes them.
package directory

// BankAccount is a company bank account and the GL code it posts to.
type BankAccount struct {
	ID            string
	Name          string
	GLAccountCode string
	CompanyID     string
	Currency      string
}

// Company is a legal entity of the group.
type Company struct {
	ID   string
	Name string
}

// Project is a yacht or charter programme owned by a company.
type Project struct {
	ID        string
	Name      string
	CompanyID string
}
