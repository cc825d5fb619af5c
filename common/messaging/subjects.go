package messaging

// Subjects follow the pattern {domain}.{resource}.{action}.
const (
	SubjectAlertsCreated     = "security.alerts.created"
	SubjectAlertsUpdated     = "security.alerts.updated"
	SubjectIncidentsCritical = "security.incidents.critical"
	SubjectIncidentsHandled  = "security.incidents.handled"
)

// IncidentSubject returns the per-type subject for a handled incident, e.g.
// security.incidents.handled.brute_force_attack.
func IncidentSubject(incidentType string) string {
	return SubjectIncidentsHandled + "." + incidentType
}
