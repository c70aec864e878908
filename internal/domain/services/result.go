package services

// Result единый конверт ответа операций оркестратора
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func ok[T any](message string, data T) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

func fail[T any](message string, data T) Result[T] {
	return Result[T]{Success: false, Message: message, Data: data}
}
