package sitemap

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/drivewise/drivewise/internal/models"
)

// Build renders an XML sitemap covering the static pages and every listing
// detail page
func Build(baseURL string, cars []models.Car) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	urlset := doc.CreateElement("urlset")
	urlset.CreateAttr("xmlns", "http://www.sitemaps.org/schemas/sitemap/0.9")

	addURL(urlset, base+"/", "")
	addURL(urlset, base+"/all-cars", "")
	addURL(urlset, base+"/car-recommendation", "")

	for _, car := range cars {
		lastmod := ""
		if !car.CreatedAt.IsZero() {
			lastmod = car.CreatedAt.Format("2006-01-02")
		}
		addURL(urlset, fmt.Sprintf("%s/cars/%s", base, car.ID), lastmod)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func addURL(urlset *etree.Element, loc, lastmod string) {
	u := urlset.CreateElement("url")
	u.CreateElement("loc").SetText(loc)
	if lastmod != "" {
		u.CreateElement("lastmod").SetText(lastmod)
	}
}
