// Package entity defines the core domain entities and validation logic for the
// crawler fleet. It contains the fundamental business objects (Source, Job,
// CrawlLog, Lock) along with their validation rules and domain-specific
// errors.
package entity
