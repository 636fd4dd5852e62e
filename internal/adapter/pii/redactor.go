package pii

import (
	"log/slog"
	"strings"

	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

const RedactedPlaceholder = "[REDACTED]"

// Field names accepted by NewRedactor.
const (
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldContact = "contact"
)

// Redactor blanks contact details on copies of deals before they leave the
// process.
type Redactor struct {
	fieldsToRedact map[string]struct{} // Use a map for O(1) lookups
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor for the given field names. Unknown
// names are logged and ignored.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		switch field {
		case "":
			continue
		case FieldEmail, FieldPhone, FieldContact:
			fieldSet[field] = struct{}{}
		default:
			logger.Warn("ignoring unknown redaction field", "field", field)
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Enabled reports whether any field is configured.
func (r *Redactor) Enabled() bool { return len(r.fieldsToRedact) > 0 }

// Redact returns d with the configured fields replaced. Empty values stay
// empty so consumers can still tell a missing contact apart.
func (r *Redactor) Redact(d domain.Deal) domain.Deal {
	if r.has(FieldEmail) && d.Email != "" {
		d.Email = RedactedPlaceholder
	}
	if r.has(FieldPhone) && d.Phone != "" {
		d.Phone = RedactedPlaceholder
	}
	if r.has(FieldContact) && d.Contact != "" {
		d.Contact = RedactedPlaceholder
	}
	return d
}

// RedactAll returns a redacted copy of deals.
func (r *Redactor) RedactAll(deals []domain.Deal) []domain.Deal {
	out := make([]domain.Deal, len(deals))
	for i, d := range deals {
		out[i] = r.Redact(d)
	}
	return out
}

// RedactSnapshot redacts the deal list and the change record of snap.
func (r *Redactor) RedactSnapshot(snap pipeline.Snapshot) pipeline.Snapshot {
	if !r.Enabled() {
		return snap
	}
	snap.Deals = r.RedactAll(snap.Deals)
	snap.Change.Deal = r.Redact(snap.Change.Deal)
	return snap
}

// DropPlaceholders clears patch fields that still hold the placeholder, so a
// client echoing a redacted deal back does not overwrite the stored contact.
func (r *Redactor) DropPlaceholders(p *domain.DealPatch) {
	if p.Email != nil && *p.Email == RedactedPlaceholder && r.has(FieldEmail) {
		p.Email = nil
	}
	if p.Phone != nil && *p.Phone == RedactedPlaceholder && r.has(FieldPhone) {
		p.Phone = nil
	}
	if p.Contact != nil && *p.Contact == RedactedPlaceholder && r.has(FieldContact) {
		p.Contact = nil
	}
}

func (r *Redactor) has(field string) bool {
	_, ok := r.fieldsToRedact[field]
	return ok
}
