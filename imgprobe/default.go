package imgprobe

import iface "FashionDetKit/interface"

// Default is the prober used by the converter unless one is injected.
// Building with the gocv tag switches it to OpenCV.
var Default iface.SizeProber = Header{}
