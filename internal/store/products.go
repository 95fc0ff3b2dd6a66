package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const (
	productColumns = `p.id, p.user_id, p.name, p.description, p.is_active, p.created_at, p.updated_at`
	variantColumns = `v.id, v.product_id, v.colour, v.size, v.sku, v.unit_price, v.stock, v.is_active, v.version, v.created_at, v.updated_at`

	DefaultProductPageSize = 12
)

const (
	SortByCreatedAt = "created_at"
	SortByName      = "name"
	SortByPrice     = "price"

	SortAsc  = "asc"
	SortDesc = "desc"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type ProductFilter struct {
	Page        int
	PageSize    int
	Query       string
	SellerID    *uuid.UUID
	ActiveOnly  bool
	Colour      string
	Size        string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
	SortBy      string
	SortDir     string

	// IncludeEmpty lists products without variants too. It cannot be
	// combined with variant-level filters.
	IncludeEmpty bool
}

func (f ProductFilter) hasVariantFilters() bool {
	return f.Colour != "" || f.Size != "" || f.MinPrice != nil || f.MaxPrice != nil || f.InStockOnly
}

type VariantInput struct {
	Colour    string
	Size      string
	SKU       *string
	UnitPrice decimal.Decimal
	Stock     int
}

type VariantUpdate struct {
	UnitPrice *decimal.Decimal
	Stock     *int
	IsActive  *bool
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.UserID,
		&product.Name,
		&product.Description,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

func scanVariant(row rowScanner) (*models.ProductVariation, error) {
	variant := &models.ProductVariation{}
	err := row.Scan(
		&variant.ID,
		&variant.ProductID,
		&variant.Colour,
		&variant.Size,
		&variant.SKU,
		&variant.UnitPrice,
		&variant.Stock,
		&variant.IsActive,
		&variant.Version,
		&variant.CreatedAt,
		&variant.UpdatedAt,
	)
	return variant, err
}

func CreateProduct(ctx context.Context, db *sql.DB, sellerID uuid.UUID, name string, description *string) (*models.Product, error) {
	query := `
		INSERT INTO products AS p (id, user_id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query, uuid.New(), sellerID, name, description))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	product.Summarize()
	return product, nil
}

// GetProductRecord loads a product without its variants.
func GetProductRecord(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.id = $1 AND p.deleted_at IS NULL`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProduct loads a product with its variants, restricted to active
// variants when activeOnly is set.
func GetProduct(ctx context.Context, db *sql.DB, id uuid.UUID, activeOnly bool) (*models.Product, error) {
	product, err := GetProductRecord(ctx, db, id)
	if err != nil {
		return nil, err
	}

	b := &sqlBuilder{}
	b.where("v.product_id = ANY(%s::uuid[])", pq.Array([]string{id.String()}))
	if activeOnly {
		b.where("v.is_active")
	}

	variants, err := loadVariants(ctx, db, b)
	if err != nil {
		return nil, err
	}

	product.Variants = variants[product.ID]
	product.Summarize()
	return product, nil
}

func UpdateProduct(ctx context.Context, db *sql.DB, id uuid.UUID, name, description *string) (*models.Product, error) {
	query := `
		UPDATE products AS p
		SET name = COALESCE($2, p.name),
		    description = COALESCE($3, p.description),
		    updated_at = NOW()
		WHERE p.id = $1 AND p.deleted_at IS NULL
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query, id, name, description))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return GetProduct(ctx, db, product.ID, false)
}

func SetProductActive(ctx context.Context, db *sql.DB, id uuid.UUID, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET is_active = $2, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, active)
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}

	return expectRow(result, database.ErrProductNotFound)
}

// SoftDeleteProduct hides a product from every read path. Existing order
// items keep referencing it.
func SoftDeleteProduct(ctx context.Context, db *sql.DB, id uuid.UUID) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	return expectRow(result, database.ErrProductNotFound)
}

func CreateVariant(ctx context.Context, db *sql.DB, productID uuid.UUID, in VariantInput) (*models.ProductVariation, error) {
	if !in.UnitPrice.IsPositive() {
		return nil, database.Validation("unit_price must be greater than 0")
	}
	if in.Stock < 0 {
		return nil, database.Validation("stock must not be negative")
	}

	query := `
		INSERT INTO product_variations AS v
			(id, product_id, colour, size, sku, unit_price, stock, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, 1, NOW(), NOW())
		RETURNING ` + variantColumns

	variant, err := scanVariant(db.QueryRowContext(ctx, query,
		uuid.New(), productID, in.Colour, in.Size, in.SKU, in.UnitPrice.Round(2), in.Stock))
	if err != nil {
		if database.IsUniqueViolation(err, "uq_product_colour_size", "uq_product_variations_sku") {
			return nil, database.ErrVariantExists
		}
		return nil, fmt.Errorf("create variant: %w", err)
	}

	return variant, nil
}

func GetVariant(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.ProductVariation, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variations v WHERE v.id = $1`

	variant, err := scanVariant(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrVariantNotFound
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	return variant, nil
}

// UpdateVariantOptimistic applies upd only if the variant is still at
// version, bumping the version on success.
func UpdateVariantOptimistic(ctx context.Context, db *sql.DB, productID, variantID uuid.UUID, upd VariantUpdate, version int) (*models.ProductVariation, error) {
	if upd.UnitPrice != nil && !upd.UnitPrice.IsPositive() {
		return nil, database.Validation("unit_price must be greater than 0")
	}
	if upd.Stock != nil && *upd.Stock < 0 {
		return nil, database.Validation("stock must not be negative")
	}

	var price *decimal.Decimal
	if upd.UnitPrice != nil {
		rounded := upd.UnitPrice.Round(2)
		price = &rounded
	}

	query := `
		UPDATE product_variations AS v
		SET unit_price = COALESCE($4, v.unit_price),
		    stock = COALESCE($5, v.stock),
		    is_active = COALESCE($6, v.is_active),
		    version = v.version + 1,
		    updated_at = NOW()
		WHERE v.id = $1 AND v.product_id = $2 AND v.version = $3
		RETURNING ` + variantColumns

	variant, err := scanVariant(db.QueryRowContext(ctx, query,
		variantID, productID, version, price, upd.Stock, upd.IsActive))
	if err == nil {
		return variant, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("update variant: %w", err)
	}

	current, err := GetVariant(ctx, db, variantID)
	if err != nil {
		return nil, err
	}
	if current.ProductID != productID {
		return nil, database.ErrVariantNotFound
	}
	return nil, database.ErrOptimisticLockFailed
}

// ReserveVariantStock locks a variant row for the rest of tx and checks
// that it, and its product, are still orderable with quantity in stock.
func ReserveVariantStock(ctx context.Context, tx *sql.Tx, variantID uuid.UUID, quantity int) (*models.ProductVariation, error) {
	query := `
		SELECT ` + variantColumns + `
		FROM product_variations v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
		  AND v.is_active
		  AND p.is_active
		  AND p.deleted_at IS NULL
		FOR UPDATE OF v`

	variant, err := scanVariant(tx.QueryRowContext(ctx, query, variantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrVariantUnavailable
		}
		return nil, fmt.Errorf("lock variant: %w", err)
	}

	if variant.Stock < quantity {
		return nil, database.ErrInsufficientStock
	}

	return variant, nil
}

// DecrementVariantStock also bumps the version so a seller edit based on
// the pre-sale stock fails its optimistic check.
func DecrementVariantStock(ctx context.Context, tx *sql.Tx, variantID uuid.UUID, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE product_variations
		 SET stock = stock - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, variantID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	return expectRow(result, database.ErrInsufficientStock)
}

func ListProducts(ctx context.Context, db *sql.DB, f ProductFilter) (*OffsetPage, error) {
	if f.IncludeEmpty && f.hasVariantFilters() {
		return nil, database.Validation("colour, size, price and in_stock_only filters are not supported with empty products")
	}
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize, DefaultProductPageSize)

	join := "JOIN"
	if f.IncludeEmpty {
		join = "LEFT JOIN"
	}
	from := `FROM products p ` + join + ` product_variations v ON v.product_id = p.id`

	b := &sqlBuilder{}
	productPredicates(f, b)
	if !f.IncludeEmpty {
		variantPredicates(f, b)
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT p.id) `+from+b.whereClause(), b.args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	dir := "DESC"
	if f.SortDir == SortAsc {
		dir = "ASC"
	}
	var sortKey string
	switch f.SortBy {
	case SortByName:
		sortKey = "p.name"
	case SortByPrice:
		sortKey = "MIN(v.unit_price)"
	default:
		sortKey = "p.created_at"
	}

	offset := (f.Page - 1) * f.PageSize
	limitArg := b.arg(f.PageSize)
	offsetArg := b.arg(offset)
	query := `SELECT p.id ` + from + b.whereClause() + `
		GROUP BY p.id
		ORDER BY ` + sortKey + ` ` + dir + ` NULLS LAST, p.id ` + dir + `
		LIMIT ` + limitArg + ` OFFSET ` + offsetArg

	rows, err := db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id.String())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	products := []models.Product{}
	if len(ids) == 0 {
		return newOffsetPage(products, total, f.Page, f.PageSize), nil
	}

	byID, err := loadProducts(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	vb := &sqlBuilder{}
	vb.where("v.product_id = ANY(%s::uuid[])", pq.Array(ids))
	if f.IncludeEmpty {
		if f.ActiveOnly {
			vb.where("v.is_active")
		}
	} else {
		variantPredicates(f, vb)
	}
	variants, err := loadVariants(ctx, db, vb)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			continue
		}
		product.Variants = variants[product.ID]
		product.Summarize()
		products = append(products, *product)
	}

	return newOffsetPage(products, total, f.Page, f.PageSize), nil
}

func productPredicates(f ProductFilter, b *sqlBuilder) {
	b.where("p.deleted_at IS NULL")
	if f.ActiveOnly {
		b.where("p.is_active")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		b.where(`p.name ILIKE '%%' || %s::text || '%%'`, escapeLike(q))
	}
	if f.SellerID != nil {
		b.where("p.user_id = %s", *f.SellerID)
	}
}

func variantPredicates(f ProductFilter, b *sqlBuilder) {
	if f.ActiveOnly {
		b.where("v.is_active")
	}
	if f.Colour != "" {
		b.where("LOWER(v.colour) = LOWER(%s::text)", f.Colour)
	}
	if f.Size != "" {
		b.where("LOWER(v.size) = LOWER(%s::text)", f.Size)
	}
	if f.MinPrice != nil {
		b.where("v.unit_price >= %s", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		b.where("v.unit_price <= %s", *f.MaxPrice)
	}
	if f.InStockOnly {
		b.where("v.stock > 0")
	}
}

func loadProducts(ctx context.Context, db *sql.DB, ids []string) (map[string]*models.Product, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = ANY($1::uuid[])`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		byID[product.ID.String()] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return byID, nil
}

func loadVariants(ctx context.Context, q querier, b *sqlBuilder) (map[uuid.UUID][]models.ProductVariation, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variations v` + b.whereClause() +
		` ORDER BY v.created_at, v.id`

	rows, err := q.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.ProductVariation)
	for rows.Next() {
		variant, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[variant.ProductID] = append(out[variant.ProductID], *variant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// sqlBuilder accumulates AND-ed predicates with positional arguments.
type sqlBuilder struct {
	clauses []string
	args    []interface{}
}

func (b *sqlBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// where adds a predicate; each %s in clause is replaced by a placeholder
// bound to the matching value.
func (b *sqlBuilder) where(clause string, values ...interface{}) {
	placeholders := make([]interface{}, len(values))
	for i, v := range values {
		placeholders[i] = b.arg(v)
	}
	if len(placeholders) > 0 {
		clause = fmt.Sprintf(clause, placeholders...)
	}
	b.clauses = append(b.clauses, clause)
}

func (b *sqlBuilder) whereClause() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}
