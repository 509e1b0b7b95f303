// Package account holds the ledger's pure data types: accounts, deposits,
// investment positions and journal entries. It contains no business rules.
package account
