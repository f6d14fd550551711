package endpoints

type Request interface {
	validate() error
}

// MultRequest collects the request parameters for the Mult method.
// Missing or unparsable operands arrive here already defaulted to 0.
type MultRequest struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

func (r MultRequest) validate() error {
	return nil
}
