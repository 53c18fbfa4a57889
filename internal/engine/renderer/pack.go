package renderer

// TextureWidth is the row length, in texels, of the attribute textures.
const TextureWidth = 4096

const (
	texelFloats = 4
	// Center and covariance take 9 floats, padded to 3 RGBA texels.
	centerCovarianceTexels = 3
	centerCovarianceFloats = 9
)

// textureRows returns the rows needed for texels texels.
func textureRows(texels int) int {
	rows := (texels + TextureWidth - 1) / TextureWidth
	return max(rows, 1)
}

// packColors copies count RGBA colors into a full-row texture image.
func packColors(colors []float32, count int) []float32 {
	out := make([]float32, textureRows(count)*TextureWidth*texelFloats)
	copy(out, colors[:count*texelFloats])
	return out
}

// packCenterCovariance spreads 9 floats per splat over 3 texels, leaving
// the last 3 floats of each splat zero.
func packCenterCovariance(centerCov []float32, count int) []float32 {
	stride := centerCovarianceTexels * texelFloats
	out := make([]float32, textureRows(count*centerCovarianceTexels)*TextureWidth*texelFloats)
	for i := 0; i < count; i++ {
		copy(out[i*stride:i*stride+centerCovarianceFloats], centerCov[i*centerCovarianceFloats:(i+1)*centerCovarianceFloats])
	}
	return out
}
