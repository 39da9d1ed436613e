package pricing

import "gonum.org/v1/gonum/stat/distuv"

// NormCDF 标准正态分布累积分布函数 Φ。
func NormCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormPDF 标准正态分布概率密度函数 φ。
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
