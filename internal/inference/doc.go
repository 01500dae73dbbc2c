// Package inference schedules classifier runs against a drawing surface.
//
// A Pipeline debounces stroke activity, samples the surface into the
// classifier's fixed input grid, runs the classifier one call at a time and
// publishes decoded predictions to a sink. Triggers that arrive while a run is
// in flight collapse into a single follow-up run.
package inference
