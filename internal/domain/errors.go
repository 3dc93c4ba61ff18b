package domain

//region BoxNotFoundError

type BoxNotFoundError struct {
	Msg string
}

func (e *BoxNotFoundError) Error() string {
	return e.Msg
}

func (e *BoxNotFoundError) Is(target error) bool {
	_, ok := target.(*BoxNotFoundError)
	return ok
}

//endregion

//region BoxInactiveError

type BoxInactiveError struct {
	Msg string
}

func (e *BoxInactiveError) Error() string {
	return e.Msg
}

func (e *BoxInactiveError) Is(target error) bool {
	_, ok := target.(*BoxInactiveError)
	return ok
}

//endregion

//region OutOfStockError

type OutOfStockError struct {
	Msg string
}

func (e *OutOfStockError) Error() string {
	return e.Msg
}

func (e *OutOfStockError) Is(target error) bool {
	_, ok := target.(*OutOfStockError)
	return ok
}

//endregion

//region InsufficientBalanceError

type InsufficientBalanceError struct {
	Msg string
}

func (e *InsufficientBalanceError) Error() string {
	return e.Msg
}

func (e *InsufficientBalanceError) Is(target error) bool {
	_, ok := target.(*InsufficientBalanceError)
	return ok
}

//endregion

//region ProbabilityTableInvalidError

// ProbabilityTableInvalidError is returned when a box's prize weights cannot
// form a distribution. The box is treated as inactive.
type ProbabilityTableInvalidError struct {
	Msg string
}

func (e *ProbabilityTableInvalidError) Error() string {
	return e.Msg
}

func (e *ProbabilityTableInvalidError) Is(target error) bool {
	switch target.(type) {
	case *ProbabilityTableInvalidError, *BoxInactiveError:
		return true
	}
	return false
}

//endregion

//region UserNotFoundError

type UserNotFoundError struct {
	Msg string
}

func (e *UserNotFoundError) Error() string {
	return e.Msg
}

func (e *UserNotFoundError) Is(target error) bool {
	_, ok := target.(*UserNotFoundError)
	return ok
}

//endregion

//region OrderNotFoundError

type OrderNotFoundError struct {
	Msg string
}

func (e *OrderNotFoundError) Error() string {
	return e.Msg
}

func (e *OrderNotFoundError) Is(target error) bool {
	_, ok := target.(*OrderNotFoundError)
	return ok
}

//endregion

//region InvalidTransitionError

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return "invalid order status transition " + string(e.From) + " -> " + string(e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	_, ok := target.(*InvalidTransitionError)
	return ok
}

//endregion

//region ServiceUnavailableError

// ServiceUnavailableError means the draw did not happen and no balance or
// stock was changed. Callers may retry.
type ServiceUnavailableError struct {
	Msg   string
	Cause error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Cause.Error()
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Cause
}

func (e *ServiceUnavailableError) Is(target error) bool {
	_, ok := target.(*ServiceUnavailableError)
	return ok
}

//endregion
