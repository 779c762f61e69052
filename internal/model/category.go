package model

// Category is a label offered when entering transactions.
type Category struct {
	Name  string
	Color string
	Icon  string
	ID    int64
}
