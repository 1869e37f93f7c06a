package spreadsheets

// Spreadsheet is a registered publish target, keyed by its external id.
type Spreadsheet struct {
	ID string
}

// Критерии для списка таблиц
type ListCriteria struct {
	Limit int
}
