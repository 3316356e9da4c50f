package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

// Правила переписывания запросов, общие для всех сущностей.
// Каждый файл этого пакета обязан строить SQL только через эти хелперы,
// чтобы фильтр мягкого удаления и аудит-штампы нельзя было обойти
// точечной правкой одного запроса.

// auditColumns — единый список аудит-колонок в порядке сканирования.
const auditColumns = `created_at, created_by, updated_at, updated_by, is_deleted, deleted_at, deleted_by`

// liveFilter возвращает конъюнкт фильтра мягкого удаления для WHERE
// (с префиксом таблицы, если задан). Опция WithDeleted снимает фильтр —
// и снимается здесь же, не «протекая» в итоговый SQL.
func liveFilter(prefix string, opts storage.ReadOptions) string {
	if opts.IncludeDeleted {
		return ""
	}

	if prefix != "" {
		return " AND " + prefix + ".is_deleted = FALSE"
	}

	return " AND is_deleted = FALSE"
}

// auditDest возвращает приёмники сканирования аудит-колонок
// в том же порядке, что auditColumns.
func auditDest(a *models.Audit) []any {
	return []any{
		&a.CreatedAt,
		&a.CreatedBy,
		&a.UpdatedAt,
		&a.UpdatedBy,
		&a.IsDeleted,
		&a.DeletedAt,
		&a.DeletedBy,
	}
}

// createStamp заполняет аудит-поля создаваемой записи.
// created_by/updated_by берутся из явного актора, а не из входной модели.
func createStamp(actor models.Actor, now time.Time) models.Audit {
	return models.Audit{
		CreatedAt: now,
		CreatedBy: actor.ID,
		UpdatedAt: now,
		UpdatedBy: actor.ID,
	}
}

// updateStamp — аргументы штампа обновления (updated_at, updated_by).
func updateStamp(actor models.Actor, now time.Time) (time.Time, uuid.UUID) {
	return now, actor.ID
}

// deleteStamp — аргументы штампа мягкого удаления (deleted_at, deleted_by).
func deleteStamp(actor models.Actor, now time.Time) (time.Time, uuid.UUID) {
	return now, actor.ID
}
