package sentinel

// Sensor identifiers used in queries and file names.
const (
	SensorOptical = "sentinel-2-l2a"
	SensorRadar   = "sentinel-1-grd"
)

// Sentinel-2 bands used by the classifier.
const (
	BandBlue  = "B2"
	BandGreen = "B3"
	BandRed   = "B4"
	BandNIR   = "B8"
	BandSWIR1 = "B11"
	BandQA    = "QA60"

	BandVV = "VV"

	BandNDVI = "ndvi"
	BandBSI  = "bsi"
)

// OpticalBands are the reflectance bands kept in the optical composite.
var OpticalBands = []string{BandBlue, BandGreen, BandRed, BandNIR, BandSWIR1}

// QA60 bit flags.
const (
	cloudBit  = 1 << 10
	cirrusBit = 1 << 11
)
