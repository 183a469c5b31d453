package geojson_test

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/robert-malhotra/stac-federator/pkg/geojson"
)

func ExampleBBoxFromRaw() {
	raw := json.RawMessage(`{"type":"Polygon","coordinates":[[[-122.5,37.8],[-122.4,37.8],[-122.4,37.9],[-122.5,37.9],[-122.5,37.8]]]}`)

	bbox, err := geojson.BBoxFromRaw(raw)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("BBox: [%.1f, %.1f, %.1f, %.1f]\n", bbox[0], bbox[1], bbox[2], bbox[3])
	// Output: BBox: [-122.5, 37.8, -122.4, 37.9]
}

func ExampleBBoxIntersects() {
	scene := []float64{-123, 37, -122, 38}
	query := []float64{-122.5, 37.5, -122.0, 38.0}

	fmt.Println(geojson.BBoxIntersects(scene, query))
	// Output: true
}
