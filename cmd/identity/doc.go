// Package identity holds Huddle's account records: users, their role and
// their password hash.
//
// Stores never see a plain password after CreateUser hashes it, and
// GetUserAuthByEmail is the only read path that returns the hash.
package identity
