// Package domain provides the core types shared by the factor pipeline:
// present/absent values, month keys, raw input series and error kinds.
package domain

import "time"

// Dataset names the five input series
type Dataset string

const (
	DatasetPrices    Dataset = "prices"
	DatasetDividends Dataset = "dividends"
	DatasetAssets    Dataset = "assets"
	DatasetROE       Dataset = "roe"
	DatasetMarketCap Dataset = "marketcap"
)

// AllDatasets lists the input series in load order
var AllDatasets = []Dataset{DatasetPrices, DatasetDividends, DatasetAssets, DatasetROE, DatasetMarketCap}

// Observation is one dated cell of an input series
type Observation struct {
	Date  time.Time
	Value Value
}

// RawSeries maps a security identifier to its observations, in any order
type RawSeries map[string][]Observation

// Securities returns the identifiers of the series
func (s RawSeries) Securities() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// Inputs bundles the five raw series handed to the panel builder
type Inputs struct {
	Prices    RawSeries
	Dividends RawSeries
	Assets    RawSeries
	ROE       RawSeries
	MarketCap RawSeries
}

// Series returns the raw series for a dataset
func (in Inputs) Series(d Dataset) RawSeries {
	switch d {
	case DatasetPrices:
		return in.Prices
	case DatasetDividends:
		return in.Dividends
	case DatasetAssets:
		return in.Assets
	case DatasetROE:
		return in.ROE
	case DatasetMarketCap:
		return in.MarketCap
	}
	return nil
}

// Set assigns the raw series for a dataset
func (in *Inputs) Set(d Dataset, s RawSeries) {
	switch d {
	case DatasetPrices:
		in.Prices = s
	case DatasetDividends:
		in.Dividends = s
	case DatasetAssets:
		in.Assets = s
	case DatasetROE:
		in.ROE = s
	case DatasetMarketCap:
		in.MarketCap = s
	}
}
