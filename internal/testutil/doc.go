// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing plan documents and capabilities. They
// are not intended for production usage.
package testutil
