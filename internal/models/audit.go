package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit — общие аудит-колонки всех персистентных сущностей.
//
// Инвариант (поддерживается storage-слоем, см. storage/postgres):
//   - created_by/updated_by заполняются из явного Actor, а не из входных данных;
//   - «удаление» — всегда мягкое: is_deleted=true + deleted_at/deleted_by;
//   - чтения по умолчанию не возвращают строки с is_deleted=true.
type Audit struct {
	CreatedAt time.Time
	CreatedBy uuid.UUID
	UpdatedAt time.Time
	UpdatedBy uuid.UUID
	IsDeleted bool
	DeletedAt *time.Time
	DeletedBy *uuid.UUID
}
