package catalog

import tourbook "github.com/eugener/tourbook/internal"

// DemoTours returns the six sample tours used to seed an empty catalog.
func DemoTours() []tourbook.TourDetail {
	return []tourbook.TourDetail{
		demo("1", "Ha Long Bay Cruise", "Cruise among the limestone karsts of Ha Long Bay with an overnight stay on deck.",
			2500000, 2, "Ha Long Bay", "Adventure", 4.8, 20, "2024-01-15T08:00:00Z"),
		demo("2", "Sapa Trekking Adventure", "Trek through rice terraces and hill-tribe villages around Sapa.",
			1800000, 3, "Sapa", "Mountain", 4.6, 15, "2024-01-14T08:00:00Z"),
		demo("3", "Saigon Street Food Tour", "An evening on the back of a scooter tasting the best street food in Ho Chi Minh City.",
			800000, 1, "Ho Chi Minh City", "Food", 4.9, 12, "2024-01-13T08:00:00Z"),
		demo("4", "Hoi An Ancient Town Walk", "Lantern-lit streets, tailors and temples of the old trading port.",
			600000, 1, "Hoi An", "Cultural", 4.7, 25, "2024-01-12T08:00:00Z"),
		demo("5", "Phu Quoc Island Escape", "Snorkelling, white sand beaches and a sunset at the night market.",
			3200000, 4, "Phu Quoc", "Beach", 4.5, 10, "2024-01-11T08:00:00Z"),
		demo("6", "Hanoi Old Quarter Heritage", "The Temple of Literature, Hoan Kiem Lake and the 36 streets of the Old Quarter.",
			900000, 1, "Hanoi", "Historical", 4.4, 30, "2024-01-10T08:00:00Z"),
	}
}

func demo(id, title, desc string, price float64, days int, location, category string, rating float64, slots int, created string) tourbook.TourDetail {
	return tourbook.TourDetail{
		Tour: tourbook.Tour{
			ID:             id,
			Title:          title,
			Description:    desc,
			Price:          price,
			Duration:       days,
			Location:       location,
			Category:       category,
			Images:         []string{"https://images.example.com/tours/" + id + "/cover.jpg"},
			Rating:         rating,
			AvailableSlots: slots,
			Status:         tourbook.StatusActive,
			CreatedAt:      created,
			UpdatedAt:      created,
		},
		TourImages: []tourbook.TourImage{{
			ID:       id + "-1",
			TourID:   id,
			ImageURL: "https://images.example.com/tours/" + id + "/cover.jpg",
			AltText:  title,
			Order:    1,
		}},
	}
}
