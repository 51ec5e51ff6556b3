// Package music holds the domain types shared by the MSTID processing
// pipeline: processing levels, the working dataset history that stages
// derive snapshots into, and detected signal descriptors.
//
// Subpackages implement the layers:
//
//	checkpoint  per-event persistence (run record, marker, snapshot)
//	quality     ordered rejection gates applied after load
//	autorange   automatic range-gate selection
//	dsp         interpolation, filtering, windowing and FFT stages
//	detect      cross-spectral matrix, wavenumber surface, signal detection
//	report      karr.txt formatting
//	pipeline    orchestration and batch execution
//
// None of the layer packages import pipeline/.
package music
