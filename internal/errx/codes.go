package errx

// System codes shared by every package. Domain codes live with their domain.
const (
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeInvalidParam Code = "INVALID_PARAM"
	CodeNotFound     Code = "NOT_FOUND"
)

var (
	ErrInternal     = NewSys(CodeInternal, "internal error")
	ErrUnavailable  = NewSys(CodeUnavailable, "service unavailable")
	ErrInvalidParam = NewBiz(CodeInvalidParam, "invalid parameter")
	ErrNotFound     = NewBiz(CodeNotFound, "not found")
)
