package util

import "database/sql"

// NullString converts a string to sql.NullString.
// Empty strings are treated as invalid (null).
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// NullStringPtr converts a *string to sql.NullString.
// Nil pointers are treated as invalid (null).
func NullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullStringToPtr converts sql.NullString to *string.
// Invalid values are returned as nil.
func NullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// NullFloat64 converts a *float64 to sql.NullFloat64.
// Nil pointers are treated as invalid (null).
func NullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// NullFloat64ToPtr converts sql.NullFloat64 to *float64.
// Invalid values are returned as nil.
func NullFloat64ToPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}

// NullInt64 converts a *int64 to sql.NullInt64.
// Nil pointers are treated as invalid (null).
func NullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// NullInt64ToPtr converts sql.NullInt64 to *int64.
// Invalid values are returned as nil.
func NullInt64ToPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	return &ni.Int64
}

// NullBoolPtr converts a *bool to sql.NullBool.
// Nil pointers are treated as invalid (null).
func NullBoolPtr(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// NullBoolToPtr converts sql.NullBool to *bool.
// Invalid values are returned as nil.
func NullBoolToPtr(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	return &nb.Bool
}

// BoolToInt64 converts a bool to int64 (true=1, false=0).
// This is useful for SQLite which doesn't have a native boolean type.
func BoolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
