package core

type (
	// Page is a server-side page of results.
	Page[T any] struct {
		Content       []T   `json:"content"`
		TotalElements int64 `json:"totalElements"`
		TotalPages    int   `json:"totalPages"`
		Number        int   `json:"number"`
		Size          int   `json:"size"`
		First         bool  `json:"first"`
		Last          bool  `json:"last"`
	}

	// ExpenseFilter holds the optional list-expenses query parameters.
	// Only non-nil fields are sent.
	ExpenseFilter struct {
		Page       *int
		Size       *int
		CategoryID *int64
		StartDate  *Date
		EndDate    *Date
		Currency   *string
		MinAmount  *Money
		MaxAmount  *Money
		Tags       *string
	}

	DateRange struct {
		StartDate *Date
		EndDate   *Date
	}

	ExportFilter struct {
		StartDate  *Date
		EndDate    *Date
		CategoryID *int64
	}

	// ReceiptImage is the request body of the scan and upload endpoints.
	ReceiptImage struct {
		ImageBase64 string `json:"imageBase64"`
		ImageFormat string `json:"imageFormat"`
	}
)

// Ptr returns a pointer to v; handy for building filters.
func Ptr[T any](v T) *T {
	return &v
}
