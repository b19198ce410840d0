package assessment

import "errors"

// Contract violations in model output
var (
	ErrInvalidRiskLevel      = errors.New("risk level must be one of None, Low, Moderate, High")
	ErrMissingRiskLevel      = errors.New("valid item is missing a risk level")
	ErrMissingAnalysis       = errors.New("valid item is missing an analysis")
	ErrMissingAdvice         = errors.New("advice must not be empty")
	ErrNoAlternatives        = errors.New("at least one alternative is required")
	ErrIncompleteAlternative = errors.New("alternative needs a name and a reason")
	ErrNoTips                = errors.New("at least one tip is required")
	ErrIncompleteTip         = errors.New("tip needs a category and text")
)

// Photo input errors
var (
	ErrTooManyPhotos    = errors.New("at most 5 photos are allowed")
	ErrMalformedDataURI = errors.New("photo must be a data URI of the form data:<mime>;base64,<data>")
	ErrUnsupportedMedia = errors.New("photo must be an image")
	ErrPhotoTooLarge    = errors.New("photo exceeds the size limit")
	ErrNothingToCheck   = errors.New("please enter an item name or upload a photo to check")
)
