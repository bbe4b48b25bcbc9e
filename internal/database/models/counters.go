package models

// Dimension names a categorical breakdown counted per visit or click.
type Dimension string

const (
	DimensionCountry  Dimension = "country"
	DimensionPage     Dimension = "page"
	DimensionDevice   Dimension = "device"
	DimensionBrowser  Dimension = "browser"
	DimensionOS       Dimension = "os"
	DimensionReferrer Dimension = "referrer"
	DimensionLink     Dimension = "link"
)

// VisitDimensions are the dimensions incremented once per tracked visit.
var VisitDimensions = []Dimension{
	DimensionCountry,
	DimensionPage,
	DimensionDevice,
	DimensionBrowser,
	DimensionOS,
	DimensionReferrer,
}

// DimensionCount is one counter row keyed by (dimension, key).
type DimensionCount struct {
	Dimension Dimension `gorm:"primaryKey;type:text"`
	Key       string    `gorm:"primaryKey"`
	Count     int64     `gorm:"not null;default:0"`
}

func (DimensionCount) TableName() string {
	return "dimension_counts"
}

// DailyStat is one day of the time series. Date is a UTC "2006-01-02" string.
type DailyStat struct {
	Date           string `gorm:"primaryKey" json:"date"`
	TotalVisits    int64  `gorm:"not null;default:0" json:"total_visits"`
	UniqueVisitors int64  `gorm:"not null;default:0" json:"unique_visitors"`
}

func (DailyStat) TableName() string {
	return "daily_stats"
}

// DateLayout is the format of DailyStat.Date.
const DateLayout = "2006-01-02"

// Named general counters.
const (
	CounterTotalVisits = "total_visits"
)

// GeneralStat is a named monotonic counter.
type GeneralStat struct {
	Key   string `gorm:"primaryKey"`
	Value int64  `gorm:"not null;default:0"`
}

func (GeneralStat) TableName() string {
	return "general_stats"
}
