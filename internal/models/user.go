package models

// User представляет зарегистрированного пользователя системы.
// Учётные записи создаются внешним сервисом аутентификации,
// здесь нужны только идентификатор и адрес для уведомлений.
type User struct {
	UUID  string // Уникальный идентификатор пользователя
	Email string // Электронная почта
}
