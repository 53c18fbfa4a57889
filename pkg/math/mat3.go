package math

// Mat3 is a 3x3 matrix in column-major order, element (row r, col c) at [c*3+r].
type Mat3 [9]float32

// Mat3Identity returns the 3x3 identity.
func Mat3Identity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Mat3Diagonal returns a diagonal matrix with d on the diagonal.
func Mat3Diagonal(d Vec3) Mat3 {
	return Mat3{d.X, 0, 0, 0, d.Y, 0, 0, 0, d.Z}
}

// At returns element (row, col).
func (m Mat3) At(row, col int) float32 {
	return m[col*3+row]
}

// Mul returns m * other.
func (m Mat3) Mul(other Mat3) Mat3 {
	var r Mat3
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			r[col*3+row] = m[row]*other[col*3] + m[3+row]*other[col*3+1] + m[6+row]*other[col*3+2]
		}
	}
	return r
}

// Transpose returns mᵀ.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// MulVec3 returns m * v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[3]*v.Y + m[6]*v.Z,
		m[1]*v.X + m[4]*v.Y + m[7]*v.Z,
		m[2]*v.X + m[5]*v.Y + m[8]*v.Z,
	}
}

// Upper returns the upper triangle (00, 01, 02, 11, 12, 22) of a symmetric matrix.
func (m Mat3) Upper() [6]float32 {
	return [6]float32{m.At(0, 0), m.At(0, 1), m.At(0, 2), m.At(1, 1), m.At(1, 2), m.At(2, 2)}
}

// SymmetricFromUpper rebuilds a symmetric matrix from its upper triangle.
func SymmetricFromUpper(u [6]float32) Mat3 {
	return Mat3{
		u[0], u[1], u[2],
		u[1], u[3], u[4],
		u[2], u[4], u[5],
	}
}
