package domain

// Общие доменные ошибки
var (
	ErrValidation      = validationError("invalid data")
	ErrNotFound        = notFoundError("Order not found")
	ErrCatalogMismatch = notFoundError("Some Products were not found!")
	ErrStorage         = infraError("storage unavailable")
	ErrPublish         = infraError("event not accepted for delivery")
	ErrIngest          = infraError("event ingestion failed")
)

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

type validationError string

func (e validationError) Error() string { return string(e) }

type infraError string

func (e infraError) Error() string { return string(e) }
