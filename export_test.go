package tarantool

func SslCreateContext(opts SslOpts) (ctx interface{}, err error) {
	return sslCreateContext(opts)
}

func ParseAddress(address string) (string, string) {
	return parseAddress(address)
}

func Scramble(encodedSalt, pass string) ([]byte, error) {
	return scramble(encodedSalt, pass)
}

func Paginate(data []interface{}, offset, limit uint32) []interface{} {
	return paginate(data, offset, limit)
}

// ReplaceExistingExpr is the Lua expression evaluated by
// InsertWithFlags with BoxReplace.
const ReplaceExistingExpr = replaceExistingExpr
