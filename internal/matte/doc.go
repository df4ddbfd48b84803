// Package matte implements the pixel side of background removal: letterboxing the
// source into the model's square input, preparing the normalized NCHW tensor,
// resampling the model mask back to source resolution, edge-aware alpha
// refinement and compositing the cutout.
//
// Every per-pixel stage reads only immutable inputs and writes each output
// element exactly once, so rows are fanned out across cores without locking.
package matte
