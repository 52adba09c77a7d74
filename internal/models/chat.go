package models

import "time"

// ChatEntry представляет одну реплику чата пользователя с ИИ-персонажем.
// ExpiresAt задаётся при создании по текущему тарифу и далее меняется
// только синхронизатором хранения при смене тарифа. Физическое удаление
// просроченных записей выполняет внешний механизм TTL хранилища.
type ChatEntry struct {
	UserUID        string    // Идентификатор пользователя
	CreatedAt      time.Time // Время создания реплики, часть первичного ключа
	Role           string    // Автор реплики: user или assistant
	Content        string    // Текст реплики
	PlanAtCreation Plan      // Тариф на момент создания, для аудита расчёта ExpiresAt
	ExpiresAt      time.Time // Абсолютное время истечения записи
}

// DummyChatEntry используется для приёма реплики чата из JSON-запроса
// до её конвертации в ChatEntry.
type DummyChatEntry struct {
	Content string `json:"content" validate:"required"`          // Текст реплики
	Persona string `json:"persona" validate:"required,alphanum"` // Выбранный ИИ-персонаж
}
