package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter loads catalogue rows into the product store. A row with a name
// starts a product; rows with only an image URL add images to the previous one.
//
// Expected headers: id,name,description,category,price,offerPrice,seller,image.
type CSVImporter struct {
	reader        *csv.Reader
	productRepo   ProductWriter
	defaultSeller string
}

func NewCSVImporter(r io.Reader, repo ProductWriter, defaultSeller string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:        csvr,
		productRepo:   repo,
		defaultSeller: defaultSeller,
	}
}

type csvRow struct {
	line       int
	ID         string
	Name       string
	Desc       string
	Category   string
	Price      string
	OfferPrice string
	Seller     string
	ImageURLs  []string
}

// Run parses CSV rows and upserts one product per named row.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["name"]; !ok {
		return 0, errors.New("missing required column \"name\"")
	}
	if _, ok := index["price"]; !ok {
		return 0, errors.New("missing required column \"price\"")
	}

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.Name != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images) belong to the current product.
		if current != nil && len(row.ImageURLs) > 0 {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	p, err := i.toProduct(row)
	if err != nil {
		return fmt.Errorf("row %d: %w", row.line, err)
	}
	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Name, err)
	}
	return nil
}

func (i *CSVImporter) toProduct(row *csvRow) (domain.Product, error) {
	if row.ID != "" && len(row.ID) != 36 {
		return domain.Product{}, fmt.Errorf("invalid id %q", row.ID)
	}
	price, err := strconv.ParseInt(row.Price, 10, 64)
	if err != nil || price <= 0 {
		return domain.Product{}, fmt.Errorf("invalid price %q for %q", row.Price, row.Name)
	}
	seller := row.Seller
	if seller == "" {
		seller = i.defaultSeller
	}
	if seller == "" {
		return domain.Product{}, fmt.Errorf("no seller for %q", row.Name)
	}

	p := domain.Product{
		ID:          row.ID,
		SellerID:    seller,
		Name:        row.Name,
		Description: row.Desc,
		Category:    row.Category,
		Price:       price,
		ImageURLs:   row.ImageURLs,
	}
	if row.OfferPrice != "" {
		offer, err := strconv.ParseInt(row.OfferPrice, 10, 64)
		if err != nil || offer <= 0 || offer > price {
			return domain.Product{}, fmt.Errorf("invalid offer price %q for %q", row.OfferPrice, row.Name)
		}
		p.OfferPrice = &offer
	}
	return p, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	name := pick(record, index, "name")
	imageURL := pick(record, index, "image")

	if name == "" && imageURL == "" {
		return nil
	}

	row := &csvRow{
		ID:         pick(record, index, "id"),
		Name:       name,
		Desc:       pick(record, index, "description"),
		Category:   pick(record, index, "category"),
		Price:      pick(record, index, "price"),
		OfferPrice: pick(record, index, "offerPrice"),
		Seller:     pick(record, index, "seller"),
	}
	if imageURL != "" {
		row.ImageURLs = []string{imageURL}
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
