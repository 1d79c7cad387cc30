// Package submap implements the submap lifecycle (component F):
// fixed-interval submap creation and finalization, registration-point
// and bounding-box caching on finish, the deintegration flush that
// keeps a finished submap's TSDF holding only its own observations,
// and pruning of fully-deintegrated blocks (spec.md §4.F).
package submap
