package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Generator produces a deterministic, TPCH-shaped dataset sized for local
// development. The same seed always yields the same rows.
type Generator struct {
	rnd *rand.Rand
	cfg Config
}

type RegionRow struct {
	RegionKey int
	Name      string
}

type NationRow struct {
	NationKey int
	Name      string
	RegionKey int
}

type CustomerRow struct {
	CustKey    int
	Name       string
	MktSegment string
	NationKey  int
}

type SupplierRow struct {
	SuppKey   int
	Name      string
	NationKey int
}

type PartRow struct {
	PartKey int
	Name    string
	Brand   string
	Type    string
}

type OrderRow struct {
	OrderKey      int
	CustKey       int
	OrderStatus   string
	TotalPrice    float64
	OrderDate     time.Time
	OrderPriority string
}

type LineItemRow struct {
	OrderKey      int
	PartKey       int
	SuppKey       int
	Quantity      int
	ExtendedPrice float64
	Discount      float64
	ShipDate      time.Time
	CommitDate    time.Time
	ShipMode      string
}

var (
	regionNames = []string{"AFRICA", "AMERICA", "ASIA", "EUROPE", "MIDDLE EAST"}

	nationNames = []string{
		"ALGERIA", "ARGENTINA", "BRAZIL", "CANADA", "EGYPT",
		"ETHIOPIA", "FRANCE", "GERMANY", "INDIA", "INDONESIA",
		"IRAN", "IRAQ", "JAPAN", "JORDAN", "KENYA",
		"MOROCCO", "MOZAMBIQUE", "PERU", "CHINA", "ROMANIA",
		"SAUDI ARABIA", "VIETNAM", "RUSSIA", "UNITED KINGDOM", "UNITED STATES",
	}

	segments   = []string{"AUTOMOBILE", "BUILDING", "FURNITURE", "HOUSEHOLD", "MACHINERY"}
	priorities = []string{"1-URGENT", "2-HIGH", "3-MEDIUM", "4-NOT SPECIFIED", "5-LOW"}
	shipModes  = []string{"AIR", "FOB", "MAIL", "RAIL", "REG AIR", "SHIP", "TRUCK"}
	partTypes  = []string{"STANDARD PLATED TIN", "SMALL BRUSHED COPPER", "MEDIUM ANODIZED NICKEL", "LARGE BURNISHED STEEL", "ECONOMY POLISHED BRASS"}
)

func NewGenerator(cfg Config) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}
}

func (g *Generator) Regions() []RegionRow {
	rows := make([]RegionRow, len(regionNames))
	for i, name := range regionNames {
		rows[i] = RegionRow{RegionKey: i, Name: name}
	}
	return rows
}

func (g *Generator) Nations() []NationRow {
	rows := make([]NationRow, len(nationNames))
	for i, name := range nationNames {
		rows[i] = NationRow{NationKey: i, Name: name, RegionKey: i % len(regionNames)}
	}
	return rows
}

func (g *Generator) Customers() []CustomerRow {
	rows := make([]CustomerRow, g.cfg.Customers)
	for i := range rows {
		key := i + 1
		rows[i] = CustomerRow{
			CustKey:    key,
			Name:       fmt.Sprintf("Customer#%09d", key),
			MktSegment: pickOne(g.rnd, segments),
			NationKey:  g.rnd.Intn(len(nationNames)),
		}
	}
	return rows
}

func (g *Generator) Suppliers() []SupplierRow {
	rows := make([]SupplierRow, g.cfg.Suppliers)
	for i := range rows {
		key := i + 1
		rows[i] = SupplierRow{
			SuppKey:   key,
			Name:      fmt.Sprintf("Supplier#%09d", key),
			NationKey: g.rnd.Intn(len(nationNames)),
		}
	}
	return rows
}

func (g *Generator) Parts() []PartRow {
	rows := make([]PartRow, g.cfg.Parts)
	for i := range rows {
		key := i + 1
		rows[i] = PartRow{
			PartKey: key,
			Name:    fmt.Sprintf("part %06d", key),
			Brand:   fmt.Sprintf("Brand#%d%d", g.rnd.Intn(5)+1, g.rnd.Intn(5)+1),
			Type:    pickOne(g.rnd, partTypes),
		}
	}
	return rows
}

// Orders returns the order rows along with their line items. Order keys are
// dense starting at 1; each order carries between one and MaxItemsPerOrder
// line items whose extended prices sum to the order total.
func (g *Generator) Orders() ([]OrderRow, []LineItemRow) {
	orders := make([]OrderRow, 0, g.cfg.Orders)
	items := make([]LineItemRow, 0, g.cfg.Orders*2)

	epoch := time.Date(1992, time.January, 1, 0, 0, 0, 0, time.UTC)
	spanDays := int(time.Date(1998, time.August, 2, 0, 0, 0, 0, time.UTC).Sub(epoch).Hours() / 24)

	for i := 0; i < g.cfg.Orders; i++ {
		orderKey := i + 1
		orderDate := epoch.AddDate(0, 0, g.rnd.Intn(spanDays))
		itemCount := g.rnd.Intn(g.cfg.MaxItemsPerOrder) + 1

		total := 0.0
		for line := 0; line < itemCount; line++ {
			quantity := g.rnd.Intn(50) + 1
			price := round2(float64(quantity) * (900 + g.rnd.Float64()*100))
			shipDate := orderDate.AddDate(0, 0, g.rnd.Intn(120)+1)
			commitDate := orderDate.AddDate(0, 0, g.rnd.Intn(90)+30)

			items = append(items, LineItemRow{
				OrderKey:      orderKey,
				PartKey:       g.rnd.Intn(g.cfg.Parts) + 1,
				SuppKey:       g.rnd.Intn(g.cfg.Suppliers) + 1,
				Quantity:      quantity,
				ExtendedPrice: price,
				Discount:      round2(g.rnd.Float64() * 0.1),
				ShipDate:      shipDate,
				CommitDate:    commitDate,
				ShipMode:      pickOne(g.rnd, shipModes),
			})
			total += price
		}

		orders = append(orders, OrderRow{
			OrderKey:      orderKey,
			CustKey:       g.rnd.Intn(g.cfg.Customers) + 1,
			OrderStatus:   g.pickStatus(orderDate),
			TotalPrice:    round2(total),
			OrderDate:     orderDate,
			OrderPriority: pickOne(g.rnd, priorities),
		})
	}
	return orders, items
}

func (g *Generator) pickStatus(orderDate time.Time) string {
	if orderDate.Year() >= 1997 {
		if g.rnd.Intn(100) < 40 {
			return "O"
		}
		return "P"
	}
	return "F"
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
