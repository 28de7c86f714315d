package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/auth"
)

// AuditEntry records who touched which clinic resource.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Tenant     string
	Resource   string // patients, inventory, appointments
	Operation  string // bills, add-stock, status, records, ...
	PatientID  string
	EntityID   string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request under /clinic/ as a type=clinic_audit event and
// hands it to the optional recorders.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/clinic/") {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c)
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					entry.StatusCode = he.Code
				} else {
					entry.StatusCode = statusOf(err)
				}
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "clinic_audit").
				Str("request_id", entry.RequestID).
				Str("tenant", entry.Tenant).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("operation", entry.Operation).
				Str("patient_id", entry.PatientID).
				Str("entity_id", entry.EntityID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("clinic_access")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context) AuditEntry {
	req := c.Request()
	ctx := req.Context()
	entry := AuditEntry{
		Timestamp:  time.Now().UTC(),
		Path:       req.URL.Path,
		Method:     req.Method,
		IPAddress:  c.RealIP(),
		UserAgent:  req.UserAgent(),
		StatusCode: c.Response().Status,
		UserID:     auth.UserIDFromContext(ctx),
		UserRoles:  auth.RolesFromContext(ctx),
		Action:     httpMethodToAction(req.Method),
	}
	entry.RequestID, _ = c.Get("request_id").(string)
	entry.Tenant, _ = c.Get("tenant_id").(string)
	entry.Resource, entry.Operation, entry.PatientID, entry.EntityID = parseClinicPath(req.URL.Path)
	return entry
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// parseClinicPath splits a /clinic/ path into its top-level resource, the
// last named segment below it, the patient id (for /clinic/patients/<id>/...)
// and the first other id in the path.
//
//	/clinic/patients/<p>/bills/<b>        -> patients, bills, <p>, <b>
//	/clinic/inventory/api/<i>/add-stock   -> inventory, add-stock, "", <i>
//	/clinic/appointments/<a>/status       -> appointments, status, "", <a>
func parseClinicPath(path string) (resource, operation, patientID, entityID string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/clinic/"), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", "", "", ""
	}
	resource = segments[0]

	for i, seg := range segments[1:] {
		switch {
		case seg == "api":
		case isUUIDLike(seg):
			if resource == "patients" && i == 0 {
				patientID = seg
			} else if entityID == "" {
				entityID = seg
			}
		default:
			operation = seg
		}
	}
	return resource, operation, patientID, entityID
}

func isUUIDLike(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
