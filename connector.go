package tarantool

// Doer is an interface that performs requests asynchronously.
type Doer interface {
	// Do performs a request asynchronously.
	Do(req Request) *Future
}

// Connector is the set of synchronous operations a Space is built on.
// Spaces and indexes are passed as resolved numbers, results and errors
// are returned as the server reports them.
type Connector interface {
	// Schema returns the resolver of space and index names.
	Schema() SchemaResolver
	// DefaultReturnTuple reports whether the affected tuple is returned
	// when a caller does not say otherwise.
	DefaultReturnTuple() bool

	Ping() (*Response, error)
	// InsertWithFlags stores a tuple. BoxAdd and BoxReplace select insert
	// or replace semantics, BoxReturnTuple asks for the stored tuple.
	InsertWithFlags(space uint32, tuple interface{}, flags uint32) (*Response, error)
	Delete(space uint32, key interface{}, returnTuple bool) (*Response, error)
	Update(space uint32, key interface{}, ops *Operations, returnTuple bool) (*Response, error)
	Upsert(space uint32, tuple interface{}, ops *Operations) (*Response, error)
	// Select looks up every key of the batch in the index. An empty batch
	// selects the whole index.
	Select(space uint32, keys []interface{}, index interface{}, offset, limit uint32) (*Response, error)
	Call(function string, args interface{}, opts CallOpts) (*Response, error)
}
