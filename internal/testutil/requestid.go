package testutil

// ConstantRequestID hands out the same request ID on every call, so logs and
// response headers of a test are byte-identical across runs.
//
// Unlike controller.FixedGenerator it never runs out.
type ConstantRequestID struct {
	id string
}

// NewConstantRequestID returns a generator for id, or "test-request" when id
// is empty.
func NewConstantRequestID(id string) *ConstantRequestID {
	if id == "" {
		id = "test-request"
	}
	return &ConstantRequestID{id: id}
}

// Generate returns the constant ID.
func (g *ConstantRequestID) Generate() string {
	return g.id
}
