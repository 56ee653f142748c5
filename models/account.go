package models

// Account is a flat chart-of-accounts record as the backend returns it.
// ParentAccountID is nil for a root.
type Account struct {
	ID              string  `json:"id" dynamodbav:"id"`
	ListID          string  `json:"listid" dynamodbav:"listid"`
	Description     string  `json:"description" dynamodbav:"description"`
	ParentAccountID *string `json:"parentAccountId" dynamodbav:"parentAccountId"`
}

// IsRoot reports whether the account has no parent. An empty parent id is
// treated as no parent; older records carry it from the placeholder header.
func (a Account) IsRoot() bool {
	return a.ParentAccountID == nil || *a.ParentAccountID == ""
}

// ParentID returns the parent id, or "" for a root.
func (a Account) ParentID() string {
	if a.IsRoot() {
		return ""
	}
	return *a.ParentAccountID
}

// Normalized returns a copy of the account with an empty parent id replaced by nil
// and the parent pointer detached from the original.
func (a Account) Normalized() Account {
	if a.IsRoot() {
		a.ParentAccountID = nil
		return a
	}
	parent := *a.ParentAccountID
	a.ParentAccountID = &parent
	return a
}

// NormalizeAccounts applies Normalized to every record of a list.
func NormalizeAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.Normalized()
	}
	return out
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
