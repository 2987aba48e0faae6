package model

import "strconv"

// Default values applied to optional fields of a secrets-backed credential payload.
const (
	DefaultDatabasePort = 5432
	DefaultDatabaseName = "postgres"
)

// PlaceholderCredential is the default static user and password. It is never
// accepted when resolving credentials, so an unconfigured deployment fails closed.
const PlaceholderCredential = "CHANGE_ME"

// ConnParams holds everything needed to reach the relational store.
// For the sqlite dialect Database is the file path and the network fields are unused.
type ConnParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Address returns host:port for logging. It never includes the password.
func (p ConnParams) Address() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}
