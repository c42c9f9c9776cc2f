// Package http exposes the scheduling engine over JSON/HTTP using chi.
//
// The router exposes the following endpoints:
//   - POST /availability/check: {"participant_id","start","end","exclude_entity_id"}
//     returns whether the window is free and the overlapping commitments.
//   - POST /availability/slots: {"participant_ids","search_start","search_end",
//     "duration_minutes"} returns common free windows.
//   - PUT /commitments/{entityID}, DELETE /commitments/{entityID}: keep the busy
//     intervals of externally owned meetings in sync.
//   - POST /series/{seriesID}/generate, POST /series/{seriesID}/regenerate:
//     {"rule","participant_ids","range_end"} expand a rule into instances.
//   - GET /series/{seriesID}/instances?include_retired=true and
//     GET /series/{seriesID}/calendar.ics list or export instances.
//   - GET|PUT /workflows/definitions/{definitionID}, GET /workflows/definitions.
//   - POST /workflows/runs, GET /workflows/runs?target_id=&target_kind=, GET /workflows/runs/{runID}.
//   - POST /workflows/runs/{runID}/steps/{stepIndex}/validate|reject and
//     POST /workflows/runs/{runID}/cancel record decisions.
//   - POST /maintenance/retention: {"horizon"} purges old generation records.
//
// Times are RFC 3339, dates YYYY-MM-DD. The acting user comes from the
// X-Actor-ID header set by the gateway. Errors are JSON {"error_code",
// "message","errors"} with Japanese messages.
package http
