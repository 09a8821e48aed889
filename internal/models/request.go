package models

type SubmitCompletionRequest struct {
	// Rating is 1-5; zero means "not given" and defaults to 5.
	Rating  int    `json:"rating" binding:"omitempty,min=1,max=5" example:"5"`
	Comment string `json:"comment"`
}

type UpdateNoteRequest struct {
	Note string `json:"note"`
}

type OpenVideoRequest struct {
	// Facing is "environment" (back camera, default) or "user" (front camera).
	Facing string `json:"facing,omitempty" binding:"omitempty,oneof=user environment" example:"environment"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
