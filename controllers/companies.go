package controllers

import (
	"theracare_go/database"
	"theracare_go/middleware"
	"theracare_go/models"

	"github.com/gofiber/fiber/v2"
)

type CompanyController struct{}

// GetCompanies returns all companies
func (cc *CompanyController) GetCompanies(c *fiber.Ctx) error {
	var companies []models.Company
	if err := database.DB.Order("name ASC").Find(&companies).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch companies"})
	}

	return c.JSON(fiber.Map{"companies": companies})
}

// GetCompany returns a single company
func (cc *CompanyController) GetCompany(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid company ID"})
	}

	var company models.Company
	if err := database.DB.First(&company, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Company not found"})
	}

	return c.JSON(fiber.Map{"company": company})
}

// GetCompanyMembers lists user accounts registered under a company
func (cc *CompanyController) GetCompanyMembers(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid company ID"})
	}

	var company models.Company
	if err := database.DB.First(&company, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Company not found"})
	}

	var members []models.User
	if err := database.DB.Where("company_id = ?", company.ID).
		Preload("Individual").
		Order("created_at DESC").
		Find(&members).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch members"})
	}

	return c.JSON(fiber.Map{
		"company": company,
		"members": members,
	})
}

// CreateCompany creates a new company (admin only)
func (cc *CompanyController) CreateCompany(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name" validate:"required"`
		Website  string `json:"website"`
		Industry string `json:"industry"`
		Address  string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	company := models.Company{
		Name:     req.Name,
		Website:  req.Website,
		Industry: req.Industry,
		Address:  req.Address,
	}
	if err := database.DB.Create(&company).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create company"})
	}

	middleware.LogActivity(c, "CREATE", "companies", company.ID, fiber.Map{
		"name": company.Name,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Company created successfully",
		"company": company,
	})
}

// UpdateCompany updates a company (admin only)
func (cc *CompanyController) UpdateCompany(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid company ID"})
	}

	var company models.Company
	if err := database.DB.First(&company, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Company not found"})
	}

	var req struct {
		Name     *string `json:"name"`
		Website  *string `json:"website"`
		Industry *string `json:"industry"`
		Address  *string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name cannot be empty"})
		}
		updates["name"] = *req.Name
	}
	if req.Website != nil {
		updates["website"] = *req.Website
	}
	if req.Industry != nil {
		updates["industry"] = *req.Industry
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&company).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update company"})
		}
	}

	middleware.LogActivity(c, "UPDATE", "companies", company.ID, nil)

	return c.JSON(fiber.Map{
		"message": "Company updated successfully",
		"company": company,
	})
}

// DeleteCompany removes a company with no registered members (admin only)
func (cc *CompanyController) DeleteCompany(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid company ID"})
	}

	var company models.Company
	if err := database.DB.First(&company, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Company not found"})
	}

	var memberCount int64
	database.DB.Model(&models.User{}).Where("company_id = ?", company.ID).Count(&memberCount)
	if memberCount > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot delete company with registered members",
		})
	}

	if err := database.DB.Delete(&company).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete company"})
	}

	middleware.LogActivity(c, "DELETE", "companies", company.ID, fiber.Map{
		"name": company.Name,
	})

	return c.JSON(fiber.Map{"message": "Company deleted successfully"})
}
