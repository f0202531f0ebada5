package model

// All lists every persisted entity. Tests migrate SQLite with it; production
// uses the versioned SQL migrations in internal/db.
func All() []any {
	return []any{
		&Organization{},
		&User{},
		&Membership{},
		&Project{},
		&ProjectParticipant{},
		&Bid{},
		&Contract{},
		&CompletionReport{},
		&Evaluation{},
		&Invoice{},
		&InvoiceLine{},
		&SideEffect{},
	}
}
