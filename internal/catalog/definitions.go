package catalog

import (
	"fmt"
	"time"
)

// Market segments of the TPCH customer table.
var marketSegments = []string{"AUTOMOBILE", "BUILDING", "FURNITURE", "HOUSEHOLD", "MACHINERY"}

func definitions(catalogName, schemaName string) []QueryDefinition {
	table := func(name string) string {
		return fmt.Sprintf("%s.%s.%s", catalogName, schemaName, name)
	}

	return []QueryDefinition{
		{
			Name:        "ordersSummary",
			Description: "Monthly order volume, revenue and distinct customers, optionally filtered to one year.",
			Params: []ParamSpec{
				{Name: "year", Type: TypeInt, Default: 0, Min: intPtr(0), Max: intPtr(9999)},
			},
			SQL: fmt.Sprintf(`
SELECT
    DATE_TRUNC('month', o_orderdate) AS order_month,
    COUNT(*) AS total_orders,
    SUM(o_totalprice) AS total_revenue,
    AVG(o_totalprice) AS avg_order_value,
    COUNT(DISTINCT o_custkey) AS unique_customers
FROM %s
WHERE ($1 = 0 OR EXTRACT(YEAR FROM o_orderdate) = $1)
GROUP BY DATE_TRUNC('month', o_orderdate)
ORDER BY order_month`, table("orders")),
		},
		{
			Name:        "kpiMetrics",
			Description: "Headline totals for the overview cards.",
			TTL:         15 * time.Minute,
			SQL: fmt.Sprintf(`
SELECT
    COUNT(*) AS total_orders,
    SUM(o_totalprice) AS total_revenue,
    COUNT(DISTINCT o_custkey) AS total_customers,
    AVG(o_totalprice) AS avg_order_value
FROM %s`, table("orders")),
		},
		{
			Name:        "ordersByStatus",
			Description: "Order distribution by status.",
			SQL: fmt.Sprintf(`
SELECT
    o_orderstatus AS status,
    COUNT(*) AS order_count,
    SUM(o_totalprice) AS total_value
FROM %s
GROUP BY o_orderstatus
ORDER BY order_count DESC`, table("orders")),
		},
		{
			Name:        "ordersByPriority",
			Description: "Order distribution by priority.",
			SQL: fmt.Sprintf(`
SELECT
    o_orderpriority AS priority,
    COUNT(*) AS order_count,
    SUM(o_totalprice) AS total_value,
    AVG(o_totalprice) AS avg_value
FROM %s
GROUP BY o_orderpriority
ORDER BY order_count DESC`, table("orders")),
		},
		{
			Name:        "topCustomers",
			Description: "Top customers by total order value.",
			Params: []ParamSpec{
				{Name: "limit", Type: TypeInt, Default: 10, Min: intPtr(1), Max: intPtr(100)},
			},
			SQL: fmt.Sprintf(`
SELECT
    c.c_name AS customer_name,
    c.c_mktsegment AS market_segment,
    n.n_name AS nation,
    COUNT(o.o_orderkey) AS order_count,
    SUM(o.o_totalprice) AS total_spent,
    AVG(o.o_totalprice) AS avg_order_value
FROM %s o
JOIN %s c ON o.o_custkey = c.c_custkey
JOIN %s n ON c.c_nationkey = n.n_nationkey
GROUP BY c.c_name, c.c_mktsegment, n.n_name
ORDER BY total_spent DESC
LIMIT $1`, table("orders"), table("customer"), table("nation")),
		},
		{
			Name:        "revenueByRegion",
			Description: "Revenue breakdown by region and nation.",
			SQL: fmt.Sprintf(`
SELECT
    r.r_name AS region,
    n.n_name AS nation,
    COUNT(o.o_orderkey) AS order_count,
    SUM(o.o_totalprice) AS total_revenue
FROM %s o
JOIN %s c ON o.o_custkey = c.c_custkey
JOIN %s n ON c.c_nationkey = n.n_nationkey
JOIN %s r ON n.n_regionkey = r.r_regionkey
GROUP BY r.r_name, n.n_name
ORDER BY total_revenue DESC`, table("orders"), table("customer"), table("nation"), table("region")),
		},
		{
			Name:        "marketSegments",
			Description: "Customer count, order count and revenue per market segment.",
			SQL: fmt.Sprintf(`
SELECT
    c.c_mktsegment AS segment,
    COUNT(DISTINCT c.c_custkey) AS customer_count,
    COUNT(o.o_orderkey) AS order_count,
    SUM(o.o_totalprice) AS total_revenue,
    AVG(o.o_totalprice) AS avg_order_value
FROM %s c
LEFT JOIN %s o ON c.c_custkey = o.o_custkey
GROUP BY c.c_mktsegment
ORDER BY total_revenue DESC`, table("customer"), table("orders")),
		},
		{
			Name:        "topParts",
			Description: "Top selling parts by discounted revenue.",
			Params: []ParamSpec{
				{Name: "limit", Type: TypeInt, Default: 10, Min: intPtr(1), Max: intPtr(100)},
			},
			SQL: fmt.Sprintf(`
SELECT
    p.p_name AS part_name,
    p.p_type AS part_type,
    p.p_brand AS brand,
    SUM(l.l_extendedprice * (1 - l.l_discount)) AS revenue,
    SUM(l.l_quantity) AS quantity_sold
FROM %s l
JOIN %s p ON l.l_partkey = p.p_partkey
GROUP BY p.p_name, p.p_type, p.p_brand
ORDER BY revenue DESC
LIMIT $1`, table("lineitem"), table("part")),
		},
		{
			Name:        "supplierPerformance",
			Description: "Top suppliers by supplied order value.",
			Params: []ParamSpec{
				{Name: "limit", Type: TypeInt, Default: 10, Min: intPtr(1), Max: intPtr(100)},
			},
			SQL: fmt.Sprintf(`
SELECT
    s.s_name AS supplier_name,
    n.n_name AS nation,
    COUNT(DISTINCT l.l_orderkey) AS orders_supplied,
    SUM(l.l_extendedprice) AS total_supply_value,
    AVG(l.l_extendedprice) AS avg_line_value
FROM %s l
JOIN %s s ON l.l_suppkey = s.s_suppkey
JOIN %s n ON s.s_nationkey = n.n_nationkey
GROUP BY s.s_name, n.n_name
ORDER BY total_supply_value DESC
LIMIT $1`, table("lineitem"), table("supplier"), table("nation")),
		},
		{
			Name:        "monthlyTrendBySegment",
			Description: "Monthly revenue trend, optionally narrowed to one market segment.",
			Params: []ParamSpec{
				{Name: "segment", Type: TypeEnum, Default: "", Enum: marketSegments},
			},
			SQL: fmt.Sprintf(`
SELECT
    DATE_TRUNC('month', o.o_orderdate) AS order_month,
    c.c_mktsegment AS segment,
    SUM(o.o_totalprice) AS revenue
FROM %s o
JOIN %s c ON o.o_custkey = c.c_custkey
WHERE ($1 = '' OR c.c_mktsegment = $1)
GROUP BY DATE_TRUNC('month', o.o_orderdate), c.c_mktsegment
ORDER BY order_month, segment`, table("orders"), table("customer")),
		},
		{
			Name:        "fulfillmentMetrics",
			Description: "Shipping performance by ship mode within an optional ship-date window.",
			Params: []ParamSpec{
				{Name: "since", Type: TypeDate, Default: ""},
				{Name: "until", Type: TypeDate, Default: ""},
			},
			SQL: fmt.Sprintf(`
SELECT
    l_shipmode AS ship_mode,
    COUNT(*) AS shipment_count,
    AVG(l_shipdate - l_commitdate) AS avg_days_to_ship,
    SUM(CASE WHEN l_shipdate <= l_commitdate THEN 1 ELSE 0 END) AS on_time_count,
    SUM(CASE WHEN l_shipdate > l_commitdate THEN 1 ELSE 0 END) AS late_count
FROM %s
WHERE ($1 = '' OR l_shipdate >= CAST($1 AS DATE))
  AND ($2 = '' OR l_shipdate <= CAST($2 AS DATE))
GROUP BY l_shipmode
ORDER BY shipment_count DESC`, table("lineitem")),
		},
	}
}
