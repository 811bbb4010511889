package collection

// Page is one response of a paginated strike query.
type Page struct {
	Collection *Collection
	// HasMore reports a rel="next" link on the response.
	HasMore bool
}
