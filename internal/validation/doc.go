// Package validation checks the local inputs of a batch before anything is
// written or sent to Mechanical Turk.
//
// Property documents (hittypeproperties.json, hitproperties.json,
// qualificationtypeproperties.json) are checked against CUE definitions
// embedded from schemas.cue. Only presence and primitive kind are checked;
// there are no cross-field or range rules. Every offending key yields its
// own Problem so a user can fix a document in one pass.
//
// Data files are JSON Lines. ValidateJSONLines stops at the first line that
// is not a JSON object and reports its 1-based number. Blank lines are
// allowed; uploads skip them with a warning.
package validation
