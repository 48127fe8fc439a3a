package utils

import "sync"

var gdalMu sync.Mutex

// WithGDALLock serialises calls into GDAL dataset handles, which are not safe
// for concurrent use.
func WithGDALLock(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}
