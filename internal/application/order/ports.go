package order

// IDGenerator supplies opaque order identifiers.
type IDGenerator interface {
	NewID() string
}
