// Package mock provides a test double for extraction.Client.
package mock
