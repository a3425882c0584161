package handler

// Helper functions for building pointer-typed payload fields

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}
